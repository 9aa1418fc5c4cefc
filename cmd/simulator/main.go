// The simulator replays a synthetic shift against a running server: each
// simulated operator posts cycle completions at a jittered pace and takes the
// occasional pause. Useful for filling the dashboard during development.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var pauseReasons = []string{"No Materials", "Machine Failure", "Bathroom", "Shift Change"}

type client struct {
	baseURL string
	http    *http.Client
}

func main() {
	baseURL := os.Getenv("SERVER_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	operators, err := parseOperators(os.Getenv("OPERATORS"))
	if err != nil {
		log.Fatal(err)
	}

	cycles := 20
	if raw := os.Getenv("CYCLES"); raw != "" {
		cycles, err = strconv.Atoi(raw)
		if err != nil {
			log.Fatalf("invalid CYCLES %q: %v", raw, err)
		}
	}

	c := &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}

	log.Printf("Simulating %d cycles for operators %v against %s", cycles, operators, c.baseURL)

	var wg sync.WaitGroup
	for _, operatorID := range operators {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			runShift(c, id, cycles)
		}(operatorID)
	}
	wg.Wait()

	log.Println("Shift complete")
}

func runShift(c *client, operatorID int64, cycles int) {
	for i := 0; i < cycles; i++ {
		// Cycle pace hovers around a 13s standard with jitter either side.
		time.Sleep(time.Duration(9000+rand.Intn(8000)) * time.Millisecond)

		if err := c.postCycle(operatorID); err != nil {
			log.Printf("operator %d: cycle failed: %v", operatorID, err)
		}

		// Roughly one pause every ten cycles.
		if rand.Intn(10) == 0 {
			reason := pauseReasons[rand.Intn(len(pauseReasons))]
			if err := c.postPause(operatorID, "start", reason); err != nil {
				log.Printf("operator %d: pause start failed: %v", operatorID, err)
				continue
			}

			time.Sleep(time.Duration(5+rand.Intn(20)) * time.Second)

			if err := c.postPause(operatorID, "stop", ""); err != nil {
				log.Printf("operator %d: pause stop failed: %v", operatorID, err)
			}
		}
	}
}

func (c *client) postCycle(operatorID int64) error {
	return c.post("/api/cycles", map[string]any{"operator_id": operatorID})
}

func (c *client) postPause(operatorID int64, action, reason string) error {
	payload := map[string]any{"operator_id": operatorID, "action": action}
	if reason != "" {
		payload["reason"] = reason
	}
	return c.post("/api/pauses", payload)
}

func (c *client) post(path string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	return nil
}

func parseOperators(raw string) ([]int64, error) {
	if raw == "" {
		return []int64{1, 2, 3}, nil
	}

	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid OPERATORS %q: %w", raw, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
