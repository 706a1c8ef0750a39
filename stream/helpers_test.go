package stream

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func TestGetStringAttr(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"entity_ref": events.NewStringAttribute("value#0b6f"),
		"parent_ref": events.NewStringAttribute(""),
		"title":      events.NewStringAttribute("Très urgent"),
		"ttl":        events.NewNumberAttribute("1700000000"),
	}

	tests := []struct {
		key  string
		want string
	}{
		{"entity_ref", "value#0b6f"},
		{"parent_ref", ""},
		{"title", "Très urgent"},
		{"ttl", ""},
		{"missing", ""},
	}
	for _, tt := range tests {
		if got := getStringAttr(image, tt.key); got != tt.want {
			t.Errorf("getStringAttr(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}

	if got := getStringAttr(nil, "entity_ref"); got != "" {
		t.Errorf("expected empty string from nil image, got %q", got)
	}
}

func TestGetNumberAttr(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"ttl":      events.NewNumberAttribute("1700000000"),
		"version":  events.NewNumberAttribute("0"),
		"position": events.NewNumberAttribute("-1"),
		"weight":   events.NewNumberAttribute("1.5"),
		"huge":     events.NewNumberAttribute("99999999999999999999"),
		"title":    events.NewStringAttribute("42"),
	}

	tests := []struct {
		key  string
		want int64
	}{
		{"ttl", 1700000000},
		{"version", 0},
		{"position", -1},
		{"weight", 0},
		{"huge", 0},
		{"title", 0},
		{"missing", 0},
	}
	for _, tt := range tests {
		if got := getNumberAttr(image, tt.key); got != tt.want {
			t.Errorf("getNumberAttr(%q) = %d, want %d", tt.key, got, tt.want)
		}
	}

	if got := getNumberAttr(nil, "ttl"); got != 0 {
		t.Errorf("expected 0 from nil image, got %d", got)
	}
}

// The handler has a nil store in these cases; reaching it would panic.
func TestProcessRecord_IgnoresRecordsWithoutNewTTL(t *testing.T) {
	image := func(attrs ...string) map[string]events.DynamoDBAttributeValue {
		m := map[string]events.DynamoDBAttributeValue{
			"entity_ref": events.NewStringAttribute("field#f1"),
		}
		for i := 0; i+1 < len(attrs); i += 2 {
			m[attrs[i]] = events.NewNumberAttribute(attrs[i+1])
		}
		return m
	}

	tests := []struct {
		name   string
		record events.DynamoDBEventRecord
	}{
		{"insert", events.DynamoDBEventRecord{EventName: "INSERT", Change: events.DynamoDBStreamRecord{NewImage: image("ttl", "1000")}}},
		{"remove", events.DynamoDBEventRecord{EventName: "REMOVE", Change: events.DynamoDBStreamRecord{OldImage: image("ttl", "1000")}}},
		{"rename", events.DynamoDBEventRecord{EventName: "MODIFY", Change: events.DynamoDBStreamRecord{
			OldImage: image("version", "1"),
			NewImage: image("version", "2"),
		}}},
		{"ttl moved", events.DynamoDBEventRecord{EventName: "MODIFY", Change: events.DynamoDBStreamRecord{
			OldImage: image("ttl", "1000"),
			NewImage: image("ttl", "2000"),
		}}},
		{"ttl zero", events.DynamoDBEventRecord{EventName: "MODIFY", Change: events.DynamoDBStreamRecord{
			OldImage: image(),
			NewImage: image("ttl", "0"),
		}}},
	}
	h := NewHandler(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := h.processRecord(context.Background(), tt.record); err != nil {
				t.Errorf("expected record to be ignored, got %v", err)
			}
		})
	}
}

func TestProcessRecord_IgnoresRecordsWithoutUsableEntityRef(t *testing.T) {
	h := NewHandler(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, ref := range []string{"", "field"} {
		newImage := map[string]events.DynamoDBAttributeValue{
			"id":  events.NewStringAttribute("f1"),
			"ttl": events.NewNumberAttribute("1000"),
		}
		if ref != "" {
			newImage["entity_ref"] = events.NewStringAttribute(ref)
		}
		record := events.DynamoDBEventRecord{
			EventName: "MODIFY",
			Change: events.DynamoDBStreamRecord{
				OldImage: map[string]events.DynamoDBAttributeValue{"id": events.NewStringAttribute("f1")},
				NewImage: newImage,
			},
		}
		if err := h.processRecord(context.Background(), record); err != nil {
			t.Errorf("entity_ref %q: expected record to be skipped, got %v", ref, err)
		}
	}
}
