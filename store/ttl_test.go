package store

import (
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestExpiredAt(t *testing.T) {
	now := testNow.Unix()
	withTTL := func(v string) map[string]types.AttributeValue {
		return map[string]types.AttributeValue{"ttl": &types.AttributeValueMemberN{Value: v}}
	}

	tests := []struct {
		name string
		item map[string]types.AttributeValue
		want bool
	}{
		{"live row", map[string]types.AttributeValue{"id": str("v1")}, false},
		{"nil row", nil, false},
		{"stamped earlier", withTTL(strconv.FormatInt(now-60, 10)), true},
		{"stamped now", withTTL(strconv.FormatInt(now, 10)), true},
		{"stamped later", withTTL(strconv.FormatInt(now+60, 10)), false},
		{"garbage", withTTL("soon"), false},
		{"string ttl", map[string]types.AttributeValue{"ttl": str("1")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expiredAt(tt.item, testNow); got != tt.want {
				t.Errorf("expiredAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLiveOnly(t *testing.T) {
	names := map[string]string{"#pk": "task_id"}
	values := map[string]types.AttributeValue{":pk": str("t1"), ":now": str("stale")}

	filter, gotNames, gotValues := liveOnly("", names, values, testNow)
	if filter != liveCondition {
		t.Errorf("expected bare live condition, got %q", filter)
	}
	if gotNames["#pk"] != "task_id" || gotNames["#ttl"] != "ttl" {
		t.Errorf("unexpected names %v", gotNames)
	}
	n, ok := gotValues[":now"].(*types.AttributeValueMemberN)
	if !ok || n.Value != strconv.FormatInt(testNow.Unix(), 10) {
		t.Errorf("expected :now at %d, got %v", testNow.Unix(), gotValues[":now"])
	}
	if len(names) != 1 || len(values) != 2 {
		t.Error("caller maps were modified")
	}

	filter, _, _ = liveOnly("#name = :name", nil, nil, testNow)
	if filter != "(#name = :name) AND ("+liveCondition+")" {
		t.Errorf("unexpected combined filter %q", filter)
	}
}

func TestParentLiveCondition(t *testing.T) {
	if !strings.HasPrefix(parentLiveCondition, "attribute_exists(id)") {
		t.Errorf("expected existence check, got %q", parentLiveCondition)
	}
	if !strings.Contains(parentLiveCondition, liveCondition) {
		t.Errorf("expected liveness check, got %q", parentLiveCondition)
	}
}
