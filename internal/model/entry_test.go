package model_test

import (
	"encoding/json"
	"testing"

	"github.com/Tiliavir/kv-time-tracker/internal/model"
)

func TestEntryTypeJSON(t *testing.T) {
	desc := "wrote docs"
	entries := []model.TimeEntry{
		{Timestamp: 1000, Type: model.Start},
		{Timestamp: 1100, Type: model.End, Description: &desc},
	}
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `[{"timestamp":1000,"type":"start","description":null},{"timestamp":1100,"type":"end","description":"wrote docs"}]`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestEntryTypeRejectsUnknown(t *testing.T) {
	var entries []model.TimeEntry
	err := json.Unmarshal([]byte(`[{"timestamp":1,"type":"pause","description":null}]`), &entries)
	if err == nil {
		t.Fatal("expected error for unknown entry type, got nil")
	}
}

func TestSortEntries(t *testing.T) {
	tests := []struct {
		name  string
		input []model.TimeEntry
		want  []model.TimeEntry
	}{
		{
			name: "out of order",
			input: []model.TimeEntry{
				{Timestamp: 1200, Type: model.Start},
				{Timestamp: 1000, Type: model.Start},
				{Timestamp: 1100, Type: model.End},
			},
			want: []model.TimeEntry{
				{Timestamp: 1000, Type: model.Start},
				{Timestamp: 1100, Type: model.End},
				{Timestamp: 1200, Type: model.Start},
			},
		},
		{
			name: "equal timestamps order end first",
			input: []model.TimeEntry{
				{Timestamp: 500, Type: model.Start},
				{Timestamp: 500, Type: model.End},
			},
			want: []model.TimeEntry{
				{Timestamp: 500, Type: model.End},
				{Timestamp: 500, Type: model.Start},
			},
		},
		{
			name:  "empty",
			input: nil,
			want:  []model.TimeEntry{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := model.SortEntries(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Timestamp != tt.want[i].Timestamp || got[i].Type != tt.want[i].Type {
					t.Errorf("entry %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSortEntriesDoesNotMutateInput(t *testing.T) {
	input := []model.TimeEntry{
		{Timestamp: 2, Type: model.End},
		{Timestamp: 1, Type: model.Start},
	}
	model.SortEntries(input)
	if input[0].Timestamp != 2 {
		t.Error("SortEntries reordered its input")
	}
}

func TestSlugFromKey(t *testing.T) {
	tests := []struct {
		key    string
		slug   string
		wantOK bool
	}{
		{"projects/typeroof", "typeroof", true},
		{"projects", "", false},
		{"projects/", "", false},
		{"settings", "", false},
	}
	for _, tt := range tests {
		slug, ok := model.SlugFromKey(tt.key)
		if slug != tt.slug || ok != tt.wantOK {
			t.Errorf("SlugFromKey(%q) = (%q, %v), want (%q, %v)", tt.key, slug, ok, tt.slug, tt.wantOK)
		}
	}
}
