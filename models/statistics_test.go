package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestStatisticsSetKeepsFirstPosition(t *testing.T) {
	var stats Statistics
	stats.Set("Market Cap", "1.2B")
	stats.Set("Beta", "0.9")
	stats.Set("Market Cap", "1.5B")

	if got := stats.Keys(); !reflect.DeepEqual(got, []string{"Market Cap", "Beta"}) {
		t.Fatalf("keys = %v, want [Market Cap Beta]", got)
	}
	if v, _ := stats.Get("Market Cap"); v != "1.5B" {
		t.Fatalf("Market Cap = %q, want 1.5B", v)
	}
	if stats.Len() != 2 {
		t.Fatalf("len = %d, want 2", stats.Len())
	}
}

func TestStatisticsJSONPreservesOrder(t *testing.T) {
	stats := NewStatistics()
	stats.Set("Trailing P/E", "12.5")
	stats.Set("Beta", "0.9")
	stats.Set("Avg Vol (3 month)", "1.1M")

	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"Trailing P/E":"12.5","Beta":"0.9","Avg Vol (3 month)":"1.1M"}`
	if string(data) != want {
		t.Fatalf("json = %s, want %s", data, want)
	}

	var decoded Statistics
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(decoded.Keys(), stats.Keys()) {
		t.Fatalf("decoded keys = %v, want %v", decoded.Keys(), stats.Keys())
	}
}

func TestStatisticsEmptyMarshalsAsObject(t *testing.T) {
	result := ScrapeResult{ASXCode: "BHP"}
	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(raw["statistics"]) != "{}" {
		t.Fatalf("statistics = %s, want {}", raw["statistics"])
	}
}

func TestRunResultSuccessRate(t *testing.T) {
	r := &RunResult{Total: 4, Scraped: 3}
	if got := r.SuccessRate(); got != 75 {
		t.Fatalf("success rate = %v, want 75", got)
	}
	if got := (&RunResult{}).SuccessRate(); got != 0 {
		t.Fatalf("empty success rate = %v, want 0", got)
	}
}
