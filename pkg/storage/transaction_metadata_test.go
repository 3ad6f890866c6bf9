package storage

import (
	"strings"
	"testing"
)

func TestTransaction_SetMetadata(t *testing.T) {
	engine := NewMemoryEngine()
	tx := engine.BeginTransaction()

	metadata := map[string]interface{}{
		"pipeline":  "ingest",
		"batchId":   12345,
		"action":    "embed-document",
		"requestId": "req-abc-123",
	}

	err := tx.SetMetadata(metadata)
	if err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}

	retrieved := tx.GetMetadata()
	if retrieved["pipeline"] != "ingest" {
		t.Errorf("Expected pipeline='ingest', got %v", retrieved["pipeline"])
	}
	if retrieved["batchId"] != 12345 {
		t.Errorf("Expected batchId=12345, got %v", retrieved["batchId"])
	}
	if retrieved["action"] != "embed-document" {
		t.Errorf("Expected action='embed-document', got %v", retrieved["action"])
	}
}

func TestTransaction_SetMetadata_Merge(t *testing.T) {
	engine := NewMemoryEngine()
	tx := engine.BeginTransaction()

	tx.SetMetadata(map[string]interface{}{
		"pipeline": "ingest",
		"batchId":  123,
	})

	// Set additional metadata (should merge)
	tx.SetMetadata(map[string]interface{}{
		"action":  "reindex",
		"batchId": 456, // Override
	})

	retrieved := tx.GetMetadata()
	if retrieved["pipeline"] != "ingest" {
		t.Error("pipeline should still be present")
	}
	if retrieved["batchId"] != 456 {
		t.Error("batchId should be overridden to 456")
	}
	if retrieved["action"] != "reindex" {
		t.Error("action should be added")
	}
}

func TestTransaction_SetMetadata_TooLarge(t *testing.T) {
	engine := NewMemoryEngine()
	tx := engine.BeginTransaction()

	// Create metadata > 2048 chars
	largeString := strings.Repeat("x", 2100)
	metadata := map[string]interface{}{
		"data": largeString,
	}

	err := tx.SetMetadata(metadata)
	if err == nil {
		t.Error("Should reject metadata > 2048 chars")
	}

	if !strings.Contains(err.Error(), "too large") {
		t.Errorf("Error message should mention 'too large', got: %v", err)
	}
}

func TestTransaction_SetMetadata_ClosedTransaction(t *testing.T) {
	engine := NewMemoryEngine()
	tx := engine.BeginTransaction()

	tx.Commit()

	err := tx.SetMetadata(map[string]interface{}{"test": "value"})
	if err != ErrTransactionClosed {
		t.Errorf("Expected ErrTransactionClosed, got %v", err)
	}
}

func TestTransaction_GetMetadata_Copy(t *testing.T) {
	engine := NewMemoryEngine()
	tx := engine.BeginTransaction()

	tx.SetMetadata(map[string]interface{}{
		"pipeline": "ingest",
	})

	metadata := tx.GetMetadata()
	metadata["pipeline"] = "modified"

	// Original should be unchanged
	retrieved := tx.GetMetadata()
	if retrieved["pipeline"] != "ingest" {
		t.Error("Original metadata should not be affected by modifications to the copy")
	}
}

func TestTransaction_Commit_LogsMetadata(t *testing.T) {
	engine := NewMemoryEngine()
	tx := engine.BeginTransaction()

	tx.SetMetadata(map[string]interface{}{
		"pipeline": "ingest",
		"batchId":  123,
	})

	node := &Node{
		ID:     "doc-1",
		Labels: []string{"Document"},
	}
	tx.CreateNode(node)

	err := tx.Commit()
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	retrieved, err := engine.GetNode("doc-1")
	if err != nil {
		t.Errorf("Node should exist after commit: %v", err)
	}
	if retrieved == nil {
		t.Error("Node should not be nil")
	}
}

func TestTransaction_Metadata_EmptyByDefault(t *testing.T) {
	engine := NewMemoryEngine()
	tx := engine.BeginTransaction()

	metadata := tx.GetMetadata()
	if len(metadata) != 0 {
		t.Errorf("Metadata should be empty by default, got %d items", len(metadata))
	}
}

func TestTransaction_Metadata_WithOperations(t *testing.T) {
	engine := NewMemoryEngine()
	tx := engine.BeginTransaction()

	tx.SetMetadata(map[string]interface{}{
		"operation": "bulk-import",
		"batchId":   "batch-001",
	})

	for i := 0; i < 5; i++ {
		node := &Node{
			ID:     NodeID("chunk-" + string(rune('0'+i))),
			Labels: []string{"Chunk"},
			Properties: map[string]interface{}{
				"index": i,
			},
		}
		tx.CreateNode(node)
	}

	err := tx.Commit()
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	count := 0
	for i := 0; i < 5; i++ {
		nodeID := NodeID("chunk-" + string(rune('0'+i)))
		if _, err := engine.GetNode(nodeID); err == nil {
			count++
		}
	}

	if count != 5 {
		t.Errorf("Expected 5 nodes, got %d", count)
	}
}
