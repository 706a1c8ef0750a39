// Package stream provides DynamoDB Streams handlers for cascade operations.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/taskfields/store"
)

// Store is the part of *store.Store the handler needs.
type Store interface {
	Registry() *store.Registry
	QueryChildren(ctx context.Context, parentRef string) ([]store.ChildRef, error)
	SetTTLByKey(ctx context.Context, table string, key store.PK, ttl int64) error
}

var _ Store = (*store.Store)(nil)

// Handler processes DynamoDB stream events for cascade deletes.
type Handler struct {
	store  Store
	logger *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(s Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:  s,
		logger: logger,
	}
}

// HandleCascadeDelete processes DynamoDB stream events to propagate TTL to children.
// This function is designed to be used as an AWS Lambda handler.
//
// A deleted field expires its values and the task values bound to it; each
// expired value then shows up on the stream in turn and expires its
// properties.
func (h *Handler) HandleCascadeDelete(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	// Only process MODIFY events where TTL was added
	if record.EventName != "MODIFY" {
		return nil
	}

	oldTTL := getNumberAttr(record.Change.OldImage, "ttl")
	newTTL := getNumberAttr(record.Change.NewImage, "ttl")

	// Only process when TTL is newly set (was absent/0, now present)
	if oldTTL != 0 || newTTL == 0 {
		return nil
	}

	entityRef := getStringAttr(record.Change.NewImage, "entity_ref")
	if entityRef == "" {
		h.logger.Warn("skipping record without entity_ref", "eventID", record.EventID)
		return nil
	}

	entityType, _, ok := store.ParseEntityRef(entityRef)
	if !ok {
		h.logger.Warn("skipping record with malformed entity_ref", "eventID", record.EventID, "entityRef", entityRef)
		return nil
	}
	if !h.store.Registry().HasChildren(entityType) {
		h.logger.Debug("no children to expire", "entityRef", entityRef)
		return nil
	}

	h.logger.Info("processing cascade delete",
		"entityRef", entityRef,
		"parentRef", getStringAttr(record.Change.NewImage, "parent_ref"),
		"ttl", newTTL,
	)

	// Children already deleted are included; SetTTLByKey keeps their TTL.
	children, err := h.store.QueryChildren(ctx, entityRef)
	if err != nil {
		return fmt.Errorf("query children: %w", err)
	}

	var errs []error
	for _, child := range children {
		if err := h.store.SetTTLByKey(ctx, child.TableName, child.Key, newTTL); err != nil {
			h.logger.Warn("failed to set TTL on child",
				"child", child.Ref,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("expire %s: %w", child.Ref, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	h.logger.Info("cascade delete completed",
		"entityRef", entityRef,
		"childrenProcessed", len(children),
	)

	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getNumberAttr extracts an integer attribute from a DynamoDB stream image.
// Missing, non-number and non-integer attributes read as 0.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	v, ok := image[key]
	if !ok || v.DataType() != events.DataTypeNumber {
		return 0
	}
	n, err := strconv.ParseInt(v.Number(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ConvertStreamKey converts a DynamoDB stream key to a store.PK.
func ConvertStreamKey(streamKey map[string]events.DynamoDBAttributeValue) store.PK {
	result := make(store.PK)
	for k, v := range streamKey {
		switch v.DataType() {
		case events.DataTypeString:
			result[k] = &types.AttributeValueMemberS{Value: v.String()}
		case events.DataTypeNumber:
			result[k] = &types.AttributeValueMemberN{Value: v.Number()}
		case events.DataTypeBinary:
			result[k] = &types.AttributeValueMemberB{Value: v.Binary()}
		}
	}
	return result
}
