// Command cascade is the Lambda handler for the field tables' DynamoDB
// streams. It expires the children of every item whose TTL was just set.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/taskfields/internal/config"
	"github.com/jacentio/taskfields/store"
	"github.com/jacentio/taskfields/stream"
)

func main() {
	cfg, err := config.Load(os.Getenv("TASKFIELDS_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	client, err := cfg.DynamoDB.NewClient(context.Background())
	if err != nil {
		logger.Error("create dynamodb client", "error", err)
		os.Exit(1)
	}

	storeCfg := cfg.DynamoDB.StoreConfig()
	registry := store.DefaultRegistry(storeCfg)
	for _, rel := range registry.AllRelationships() {
		logger.Debug("cascade relationship",
			"parent", rel.ParentType,
			"child", rel.ChildType,
			"table", rel.ChildTableName,
			"index", rel.IndexName,
		)
	}

	h := stream.NewHandler(store.NewWithRegistry(client, storeCfg, registry), logger)
	lambda.Start(h.HandleCascadeDelete)
}
