// Package gatewaytest runs an in-memory stand-in for the Asaas API.
package gatewaytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/gateway/domain"
)

const APIKey = "test-key"

type Request struct {
	Method string
	Path   string
	Body   map[string]any
}

type failure struct {
	status      int
	description string
}

type Server struct {
	*httptest.Server

	mu            sync.Mutex
	seq           int
	customers     []domain.Customer
	charges       map[string]domain.Charge
	subscriptions []domain.Subscription
	subPayments   map[string][]domain.Charge

	// pollsBeforeInvoice counts payment listings that return nothing before the first invoice appears.
	pollsBeforeInvoice int
	polls              map[string]int
	failures           map[string]failure
	requests           []Request
}

func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		charges:     map[string]domain.Charge{},
		subPayments: map[string][]domain.Charge{},
		polls:       map[string]int{},
		failures:    map[string]failure{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Config returns gateway settings pointing at the fake.
func (s *Server) Config() config.GatewayConfig {
	return config.GatewayConfig{BaseURL: s.URL, APIKey: APIKey}
}

func (s *Server) AddCustomer(c domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = s.nextID("cus")
	}
	s.customers = append(s.customers, c)
}

func (s *Server) AddSubscription(sub domain.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions = append(s.subscriptions, sub)
}

// DelayInvoices makes subscription payment listings come back empty n times per subscription.
func (s *Server) DelayInvoices(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollsBeforeInvoice = n
}

// Fail makes every request matching "METHOD /path" answer with status and an Asaas error body.
// A route ending in "/*" matches any id under that collection.
func (s *Server) Fail(route string, status int, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, description: description}
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many requests hit route ("METHOD /path").
func (s *Server) Count(route string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method+" "+r.Path == route {
			n++
		}
	}
	return n
}

// Subscription returns the stored subscription with id.
func (s *Server) Subscription(id string) (domain.Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subscriptions {
		if sub.ID == id {
			return sub, true
		}
	}
	return domain.Subscription{}, false
}

func (s *Server) Customers() []domain.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Customer, len(s.customers))
	copy(out, s.customers)
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Body: body})

	if r.Header.Get("access_token") != APIKey {
		writeError(w, http.StatusUnauthorized, "invalid_access_token")
		return
	}
	route := r.Method + " " + r.URL.Path
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if f, ok := s.failures[route]; ok {
		writeError(w, f.status, f.description)
		return
	}
	if f, ok := s.failures[r.Method+" /"+parts[0]+"/*"]; ok && len(parts) > 1 {
		writeError(w, f.status, f.description)
		return
	}

	switch {
	case route == "GET /customers":
		s.listCustomers(w, r)
	case route == "POST /customers":
		c := domain.Customer{
			ID:      s.nextID("cus"),
			Name:    str(body["name"]),
			Email:   str(body["email"]),
			CpfCnpj: str(body["cpfCnpj"]),
		}
		s.customers = append(s.customers, c)
		writeJSON(w, c)
	case route == "POST /payments":
		id := s.nextID("pay")
		charge := domain.Charge{
			ID:                id,
			Status:            "PENDING",
			InvoiceURL:        "https://sandbox.asaas.com/i/" + id,
			ExternalReference: str(body["externalReference"]),
			DueDate:           str(body["dueDate"]),
		}
		s.charges[id] = charge
		writeJSON(w, charge)
	case r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "payments" && parts[2] == "pixQrCode":
		if _, ok := s.charges[parts[1]]; !ok {
			writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		writeJSON(w, domain.PixQRCode{EncodedImage: "aW1n", Payload: "00020126pix" + parts[1], ExpirationDate: "2099-01-01 23:59:59"})
	case route == "POST /subscriptions":
		sub := domain.Subscription{
			ID:          s.nextID("sub"),
			Customer:    str(body["customer"]),
			Status:      "ACTIVE",
			NextDueDate: str(body["nextDueDate"]),
		}
		s.subscriptions = append(s.subscriptions, sub)
		payID := s.nextID("pay")
		s.subPayments[sub.ID] = []domain.Charge{{
			ID:                payID,
			Status:            "PENDING",
			InvoiceURL:        "https://sandbox.asaas.com/i/" + payID,
			ExternalReference: str(body["externalReference"]),
			DueDate:           sub.NextDueDate,
		}}
		writeJSON(w, sub)
	case r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "subscriptions" && parts[2] == "payments":
		s.polls[parts[1]]++
		if s.polls[parts[1]] <= s.pollsBeforeInvoice {
			writeList(w, []domain.Charge{}, false)
			return
		}
		payments := s.subPayments[parts[1]]
		if payments == nil {
			payments = []domain.Charge{}
		}
		writeList(w, payments, false)
	case r.Method == http.MethodDelete && len(parts) == 2 && parts[0] == "subscriptions":
		for i := range s.subscriptions {
			if s.subscriptions[i].ID == parts[1] {
				s.subscriptions[i].Status = "DELETED"
				delete(s.subPayments, parts[1])
				writeJSON(w, map[string]any{"deleted": true, "id": parts[1]})
				return
			}
		}
		writeError(w, http.StatusNotFound, "subscription not found")
	case route == "GET /subscriptions":
		customer := r.URL.Query().Get("customer")
		status := r.URL.Query().Get("status")
		out := []domain.Subscription{}
		for _, sub := range s.subscriptions {
			if (customer == "" || sub.Customer == customer) && (status == "" || sub.Status == status) {
				out = append(out, sub)
			}
		}
		writeList(w, out, false)
	default:
		writeError(w, http.StatusNotFound, "route not found")
	}
}

func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if email := q.Get("email"); email != "" {
		writeList(w, filterCustomers(s.customers, func(c domain.Customer) bool { return strings.EqualFold(c.Email, email) }), false)
		return
	}
	if tax := q.Get("cpfCnpj"); tax != "" {
		writeList(w, filterCustomers(s.customers, func(c domain.Customer) bool { return c.CpfCnpj == tax }), false)
		return
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 10
	}
	if offset > len(s.customers) {
		offset = len(s.customers)
	}
	end := offset + limit
	if end > len(s.customers) {
		end = len(s.customers)
	}
	writeList(w, s.customers[offset:end], end < len(s.customers))
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%06d", prefix, s.seq)
}

func filterCustomers(in []domain.Customer, keep func(domain.Customer) bool) []domain.Customer {
	out := []domain.Customer{}
	for _, c := range in {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func writeList[T any](w http.ResponseWriter, data []T, hasMore bool) {
	writeJSON(w, map[string]any{
		"object":     "list",
		"hasMore":    hasMore,
		"totalCount": len(data),
		"data":       data,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]string{{"code": "invalid_action", "description": description}},
	})
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
