package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AndrewGaspar/parthenon/internal/model"
)

func TestStreamEventsTerminalRun(t *testing.T) {
	srv := newTestServer(t)
	run := seedRun(t, srv, model.StateComplete, model.SpaceHost)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs/" + run.ID + "/events")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			t.Errorf("unexpected line %q in terminal run stream", line)
		}
	}
}

func TestStreamEventsReceivesSnapshots(t *testing.T) {
	srv := newTestServer(t)
	run := seedRun(t, srv, model.StateRunning, model.SpaceHost)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/v1/runs/"+run.ID+"/events", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	broker := srv.engine.Broker()
	broker.Publish(run.ID, model.Snapshot{RunID: run.ID, Cycle: 1, Time: 0.1})
	broker.Publish(run.ID, model.Snapshot{RunID: run.ID, Cycle: 2, Time: 0.2})
	broker.Close(run.ID)

	scanner := bufio.NewScanner(resp.Body)
	var snaps []model.Snapshot
	var events []string
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			events = append(events, name)
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok || !strings.HasPrefix(data, "{") {
			continue
		}
		var snap model.Snapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			t.Fatalf("decode snapshot %q: %v", data, err)
		}
		snaps = append(snaps, snap)
	}

	if len(snaps) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(snaps))
	}
	if snaps[0].Cycle != 1 || snaps[1].Cycle != 2 {
		t.Errorf("cycles = %d,%d, want 1,2", snaps[0].Cycle, snaps[1].Cycle)
	}
	if len(events) != 1 || events[0] != "done" {
		t.Errorf("events = %v, want [done]", events)
	}
}
