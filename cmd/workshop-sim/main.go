// Command workshop-sim drives one vehicle through the garage workflow over the REST API:
// booking, inspection, job, work log, parts, invoice and payment.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// entity holds the fields the simulation reads back from any resource.
type entity struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	JobID         string  `json:"jobId"`
	BookingID     string  `json:"bookingId"`
	ItemID        string  `json:"itemId"`
	InvoiceNumber string  `json:"invoiceNumber"`
	CurrentStock  float64 `json:"currentStock"`
	ActualHours   float64 `json:"actualHours"`
	Total         float64 `json:"total"`
}

// envelope is the response body shared by every endpoint.
type envelope struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	Error         string          `json:"error"`
	Token         string          `json:"token"`
	User          *entity         `json:"user"`
	Vehicle       *entity         `json:"vehicle"`
	Booking       *entity         `json:"booking"`
	Item          *entity         `json:"item"`
	Job           *entity         `json:"job"`
	Invoice       *entity         `json:"invoice"`
	GoodsRequests []entity        `json:"goodsRequests"`
	Summary       json.RawMessage `json:"summary"`
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type apiClient struct {
	baseURL string
	http    *http.Client
	token   string
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// as returns a client sharing the connection pool but authenticated with token.
func (c *apiClient) as(token string) *apiClient {
	return &apiClient{baseURL: c.baseURL, http: c.http, token: token}
}

func (c *apiClient) do(ctx context.Context, method, path string, body interface{}) (*envelope, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	if resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Message: env.Error}
	}
	return &env, nil
}

func (c *apiClient) login(ctx context.Context, username, password string) (*apiClient, *entity, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, nil, err
	}
	return c.as(env.Token), env.User, nil
}

// scenario runs the workflow once. Names get suffix so repeated runs do not collide.
type scenario struct {
	api      *apiClient
	admin    *apiClient
	password string
	suffix   string
	hours    float64
}

func (s *scenario) run(ctx context.Context) error {
	tech, err := s.admin.do(ctx, http.MethodPost, "/api/users", map[string]interface{}{
		"username":        "tech" + s.suffix,
		"email":           "tech" + s.suffix + "@garage.local",
		"password":        s.password,
		"role":            "technician",
		"firstName":       "Sim",
		"lastName":        "Technician",
		"specializations": []string{"brakes"},
	})
	if err != nil {
		return fmt.Errorf("create technician: %w", err)
	}
	log.WithField("technician", tech.User.ID).Info("Technician created")

	reg, err := s.api.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"username":  "cust" + s.suffix,
		"email":     "cust" + s.suffix + "@example.com",
		"password":  s.password,
		"firstName": "Sim",
		"lastName":  "Customer",
	})
	if err != nil {
		return fmt.Errorf("register customer: %w", err)
	}
	customer := s.api.as(reg.Token)

	vehicle, err := customer.do(ctx, http.MethodPost, "/api/vehicles", map[string]interface{}{
		"registrationNumber": "SIM-" + s.suffix,
		"make":               "Toyota",
		"model":              "Axio",
		"year":               2018,
	})
	if err != nil {
		return fmt.Errorf("create vehicle: %w", err)
	}

	booking, err := customer.do(ctx, http.MethodPost, "/api/bookings", map[string]interface{}{
		"vehicle":       vehicle.Vehicle.ID,
		"serviceType":   "brake_service",
		"description":   "Squealing brakes",
		"scheduledDate": time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	bookingPath := "/api/bookings/" + booking.Booking.ID
	log.WithField("booking", booking.Booking.BookingID).Info("Booking created")

	item, err := s.admin.do(ctx, http.MethodPost, "/api/inventory", map[string]interface{}{
		"name":         "Brake pad set " + s.suffix,
		"category":     "parts",
		"unit":         "set",
		"unitPrice":    4500,
		"currentStock": 10,
		"minimumStock": 2,
	})
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}

	if _, err := s.admin.do(ctx, http.MethodPatch, bookingPath+"/inspector", map[string]string{"inspector": tech.User.ID}); err != nil {
		return fmt.Errorf("assign inspector: %w", err)
	}
	if _, err := s.admin.do(ctx, http.MethodPatch, bookingPath+"/status", map[string]string{"status": "inspecting"}); err != nil {
		return fmt.Errorf("start inspection: %w", err)
	}

	job, err := s.admin.do(ctx, http.MethodPost, "/api/jobs/booking/"+booking.Booking.ID, map[string]interface{}{
		"title":             "Replace brake pads",
		"assignedLabourers": []string{tech.User.ID},
		"estimatedHours":    s.hours,
		"requirements": map[string]interface{}{
			"materials": []map[string]interface{}{{"itemId": item.Item.ItemID, "requestedQuantity": 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	jobPath := "/api/jobs/" + job.Job.ID
	log.WithFields(log.Fields{"job": job.Job.JobID, "goods_requests": len(job.GoodsRequests)}).Info("Job created")

	for _, gr := range job.GoodsRequests {
		if _, err := s.admin.do(ctx, http.MethodPatch, "/api/goods-requests/"+gr.ID+"/fulfill", nil); err != nil {
			return fmt.Errorf("fulfill goods request: %w", err)
		}
	}

	technician, _, err := s.api.login(ctx, "tech"+s.suffix, s.password)
	if err != nil {
		return fmt.Errorf("technician login: %w", err)
	}
	if _, err := technician.do(ctx, http.MethodPatch, jobPath+"/status", map[string]string{"status": "working"}); err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	end := time.Now()
	start := end.Add(-time.Duration(s.hours * float64(time.Hour)))
	if _, err := technician.do(ctx, http.MethodPost, jobPath+"/worklog", map[string]interface{}{
		"startTime":   start,
		"endTime":     end,
		"description": "Replaced front pads",
	}); err != nil {
		return fmt.Errorf("log work: %w", err)
	}
	done, err := technician.do(ctx, http.MethodPatch, jobPath+"/status", map[string]string{
		"status": "completed",
		"notes":  "Road tested",
	})
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	log.WithFields(log.Fields{"job": done.Job.JobID, "hours": done.Job.ActualHours}).Info("Job completed")

	synced, err := customer.do(ctx, http.MethodGet, bookingPath, nil)
	if err != nil {
		return fmt.Errorf("reload booking: %w", err)
	}
	log.WithField("status", synced.Booking.Status).Info("Booking status after job completion")

	invoice, err := s.admin.do(ctx, http.MethodPost, "/api/invoices/job/"+job.Job.ID, map[string]string{"notes": "Simulated visit"})
	if err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	paid, err := s.admin.do(ctx, http.MethodPatch, "/api/invoices/"+invoice.Invoice.ID+"/pay", map[string]string{"paymentMethod": "card"})
	if err != nil {
		return fmt.Errorf("pay invoice: %w", err)
	}
	log.WithFields(log.Fields{
		"invoice": paid.Invoice.InvoiceNumber,
		"total":   paid.Invoice.Total,
		"status":  paid.Invoice.Status,
	}).Info("Invoice settled")

	report, err := s.admin.do(ctx, http.MethodGet, "/api/reports/summary", nil)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}
	log.WithField("summary", string(report.Summary)).Info("Workshop summary")
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	apiURL := getEnv("API_BASE_URL", "http://localhost:8080")
	runs := 1
	if v := os.Getenv("SIM_RUNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			runs = n
		}
	}

	ctx := context.Background()
	api := newAPIClient(apiURL)
	admin, _, err := api.login(ctx, getEnv("SIM_ADMIN_USERNAME", "admin"), os.Getenv("SIM_ADMIN_PASSWORD"))
	if err != nil {
		log.WithError(err).Fatal("Admin login failed. Set SIM_ADMIN_USERNAME and SIM_ADMIN_PASSWORD.")
	}

	log.WithFields(log.Fields{"api_url": apiURL, "runs": runs}).Info("Starting workshop simulation")
	failed := 0
	for i := 0; i < runs; i++ {
		s := &scenario{
			api:      api,
			admin:    admin,
			password: "simulate-123",
			suffix:   fmt.Sprintf("%d%02d", time.Now().Unix()%100000, i),
			hours:    1.5,
		}
		if err := s.run(ctx); err != nil {
			failed++
			log.WithError(err).WithField("run", i+1).Error("Simulation run failed")
		}
	}
	if failed > 0 {
		log.WithField("failed", failed).Fatal("Workshop simulation finished with failures")
	}
	log.Info("Workshop simulation finished")
}
