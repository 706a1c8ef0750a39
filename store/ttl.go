package store

import (
	"fmt"
	"maps"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Deleted fields, values, properties and task values keep their row until
// DynamoDB purges it. A row counts as gone once its ttl is at or before now.

// liveCondition holds for rows that are not soft deleted at :now.
const liveCondition = "attribute_not_exists(#ttl) OR #ttl > :now"

// parentLiveCondition guards child writes: the parent row must exist and be live.
const parentLiveCondition = "attribute_exists(id) AND (" + liveCondition + ")"

const (
	// softDeleteExpr stamps the ttl once and bumps the version.
	softDeleteExpr = "SET #ttl = if_not_exists(#ttl, :now), #version = #version + :one"
	// stampTTLExpr stamps the ttl unconditionally and bumps the version.
	stampTTLExpr = "SET #ttl = :now, #version = #version + :one"
)

// expiredAt reports whether item carries a ttl at or before now. Rows
// without a numeric ttl are live.
func expiredAt(item map[string]types.AttributeValue, now time.Time) bool {
	n, ok := item["ttl"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(n.Value, 10, 64)
	return err == nil && ttl <= now.Unix()
}

func unixValue(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Unix(), 10)}
}

func ttlNames() map[string]string {
	return map[string]string{"#ttl": "ttl"}
}

// stampNames and stampValues are the expression maps of a ttl stamp.
func stampNames() map[string]string {
	return map[string]string{"#ttl": "ttl", "#version": "version"}
}

func stampValues(now time.Time) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":now": unixValue(now),
		":one": &types.AttributeValueMemberN{Value: "1"},
	}
}

// liveOnly narrows a query to rows live at now. The caller's maps are not
// modified.
func liveOnly(filter string, names map[string]string, values map[string]types.AttributeValue, now time.Time) (string, map[string]string, map[string]types.AttributeValue) {
	if filter == "" {
		filter = liveCondition
	} else {
		filter = fmt.Sprintf("(%s) AND (%s)", filter, liveCondition)
	}

	outNames := make(map[string]string, len(names)+1)
	maps.Copy(outNames, names)
	maps.Copy(outNames, ttlNames())
	outValues := make(map[string]types.AttributeValue, len(values)+1)
	maps.Copy(outValues, values)
	outValues[":now"] = unixValue(now)
	return filter, outNames, outValues
}
