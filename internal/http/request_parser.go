// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// bounded body reading, JSON or form decoding, list filters and path indices.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"doordashboard/internal/aggregate"
	"doordashboard/internal/core"
	"doordashboard/internal/services"
)

// maxBodyBytes caps request bodies; a session with a few hundred deliveries
// fits comfortably.
const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads at most maxBodyBytes once and stores them for subsequent parsing.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if p.err != nil {
		p.err = fmt.Errorf("read body: %w", p.err)
	}
	return p
}

// Parse attempts to parse the body as JSON or form data. Numbers in JSON
// bodies are kept as json.Number so the numeric normalizer sees them intact.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = fmt.Errorf("invalid JSON body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// Object returns the decoded JSON object. Form bodies and empty bodies are
// rejected: a session record needs nested deliveries.
func (p *RequestBodyParser) Object() (map[string]any, error) {
	if err := p.Parse(); err != nil {
		return nil, err
	}
	if p.jsonData == nil {
		if len(bytes.TrimSpace(p.body)) == 0 {
			return nil, errEmptyBody
		}
		return nil, errors.New("expected a JSON object body")
	}
	return p.jsonData, nil
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseSessionRecord decodes a POST /api/sessions body into a raw record.
// Malformed bodies wrap core.ErrMalformedRecord so they map to 400.
func ParseSessionRecord(w http.ResponseWriter, r *http.Request) (core.RawSession, error) {
	obj, err := NewRequestBodyParser(w, r).Object()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedRecord, err)
	}
	return core.RawSession(obj), nil
}

// ParseSessionFilter reads the list filters from the query string. Dates
// must be YYYY-MM-DD; limit and offset must be non-negative integers.
func ParseSessionFilter(query url.Values) (services.SessionFilter, error) {
	f := services.SessionFilter{
		StartDate:    strings.TrimSpace(query.Get("start_date")),
		EndDate:      strings.TrimSpace(query.Get("end_date")),
		Merchant:     sanitizeInput(query.Get("merchant")),
		MerchantType: sanitizeInput(query.Get("merchant_type")),
	}
	for name, date := range map[string]string{"start_date": f.StartDate, "end_date": f.EndDate} {
		if date == "" {
			continue
		}
		if _, err := time.Parse(core.DateLayout, date); err != nil {
			return services.SessionFilter{}, fmt.Errorf("invalid %s %q, expected YYYY-MM-DD", name, date)
		}
	}

	var err error
	if f.Limit, err = nonNegativeInt(query, "limit", services.DefaultListLimit); err != nil {
		return services.SessionFilter{}, err
	}
	if f.Offset, err = nonNegativeInt(query, "offset", 0); err != nil {
		return services.SessionFilter{}, err
	}
	return f, nil
}

// ParseMerchantSort reads ?sort=, defaulting to earnings.
func ParseMerchantSort(query url.Values) (aggregate.MerchantSort, error) {
	return aggregate.ParseMerchantSort(strings.TrimSpace(query.Get("sort")))
}

// ParseLocationKey reads ?by=, defaulting to dropoff.
func ParseLocationKey(query url.Values) (aggregate.LocationKey, error) {
	return aggregate.ParseLocationKey(strings.TrimSpace(query.Get("by")))
}

// ParseIndex reads a non-negative positional index from a path segment.
func ParseIndex(raw string) (int, error) {
	idx, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid session index %q: must be an integer", raw)
	}
	return idx, nil
}

func nonNegativeInt(query url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", key, v)
	}
	return n, nil
}
