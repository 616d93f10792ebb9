package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func numericToString(n pgtype.Numeric) string {
	return numericToDecimalOrZero(n).StringFixed(2)
}

func numericToDecimalOrZero(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parsePagination reads limit/offset query params with sane bounds.
func parsePagination(r *http.Request) (limit, offset int32) {
	limit = defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			if n > maxPageSize {
				n = maxPageSize
			}
			limit = int32(n)
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = int32(n)
		}
	}
	return limit, offset
}

// parseDateRange reads from/to query params as dates or RFC3339 timestamps.
// The "to" bound is exclusive; a bare date means midnight of the next day.
func parseDateRange(r *http.Request) (from, to pgtype.Timestamptz, ok bool) {
	ok = true
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := parseDateOrTime(raw)
		if err != nil {
			return from, to, false
		}
		from = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := parseDateOrTime(raw)
		if err != nil {
			return from, to, false
		}
		if len(raw) == len("2006-01-02") {
			t = t.AddDate(0, 0, 1)
		}
		to = pgtype.Timestamptz{Time: t, Valid: true}
	}
	return from, to, ok
}

func parseDateOrTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// parsePositiveAmount parses a money amount that must be strictly positive.
func parsePositiveAmount(s string) (pgtype.Numeric, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil || !d.GreaterThan(decimal.Zero) {
		return pgtype.Numeric{}, false
	}
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n, true
}

func textOrEmpty(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

func timeOrNil(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func uuidOrNil(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}

func dateOrNil(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	return &d.Time
}
