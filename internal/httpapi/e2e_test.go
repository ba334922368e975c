//go:build integration

package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joelkehle/kundali/internal/config"
	"github.com/joelkehle/kundali/internal/store"
)

func TestE2EChartArchiveOverSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "charts.db")
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer st.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: NewServer(Options{Store: st, Engine: config.Default().Engine})}
	go srv.Serve(ln)
	defer srv.Close()

	baseURL := "http://" + ln.Addr().String()
	client := &http.Client{Timeout: 10 * time.Second}
	defer client.CloseIdleConnections()
	t.Logf("kundali running at %s", baseURL)

	resp, err := client.Post(baseURL+"/v1/charts", "application/json", bytes.NewReader([]byte(chartBody)))
	if err != nil {
		t.Fatalf("create chart: %v", err)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	resp.Body.Close()
	if created.ID == "" {
		t.Fatalf("expected chart id, status=%d", resp.StatusCode)
	}

	resp, err = client.Get(baseURL + "/v1/charts/" + created.ID + "/dasha/active?at=2024-06-01T00:00:00Z")
	if err != nil {
		t.Fatalf("active chain: %v", err)
	}
	var active struct {
		Chain []struct {
			RulingLord string `json:"rulingLord"`
			Level      int    `json:"level"`
		} `json:"chain"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&active); err != nil {
		t.Fatalf("decode chain: %v", err)
	}
	resp.Body.Close()
	if len(active.Chain) != 5 || active.Chain[0].RulingLord != "Sun" || active.Chain[4].Level != 5 {
		t.Fatalf("unexpected chain %+v", active.Chain)
	}

	resp, err = client.Get(baseURL + "/v1/charts/" + created.ID + "/report?format=html&at=2024-06-01")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Active Dasha") {
		t.Fatalf("unexpected report status=%d", resp.StatusCode)
	}
}
