// Tests for unique-constraint enforcement on bulk node creation.
package storage

import (
	"strings"
	"testing"
)

func TestBulkCreateNodesConstraintEnforcement(t *testing.T) {
	engine := NewMemoryEngine()
	defer engine.Close()

	err := engine.GetSchema().AddUniqueConstraint("unique_source_uri", "Document", "source_uri")
	if err != nil {
		t.Fatalf("Failed to add constraint: %v", err)
	}

	t.Run("bulk create enforces unique constraint", func(t *testing.T) {
		doc1 := &Node{
			ID:         "doc-1",
			Labels:     []string{"Document"},
			Properties: map[string]interface{}{"source_uri": "s3://corpus/a.txt", "title": "A"},
		}
		err := engine.CreateNode(doc1)
		if err != nil {
			t.Fatalf("Failed to create first node: %v", err)
		}

		nodes := []*Node{
			{
				ID:         "doc-2",
				Labels:     []string{"Document"},
				Properties: map[string]interface{}{"source_uri": "s3://corpus/b.txt", "title": "B"},
			},
			{
				ID:         "doc-3",
				Labels:     []string{"Document"},
				Properties: map[string]interface{}{"source_uri": "s3://corpus/a.txt", "title": "A duplicate"}, // duplicate!
			},
		}

		err = engine.BulkCreateNodes(nodes)
		if err == nil {
			t.Fatal("Expected constraint violation error, got nil")
		}

		if !strings.Contains(err.Error(), "constraint violation") {
			t.Errorf("Expected constraint violation error, got: %v", err)
		}

		// Verify no nodes were created (atomic - all or nothing)
		_, err = engine.GetNode("doc-2")
		if err == nil {
			t.Error("Node doc-2 should not exist after failed bulk create")
		}
	})

	t.Run("bulk create registers unique values", func(t *testing.T) {
		engine2 := NewMemoryEngine()
		defer engine2.Close()

		err := engine2.GetSchema().AddUniqueConstraint("unique_source_uri", "Document", "source_uri")
		if err != nil {
			t.Fatalf("Failed to add constraint: %v", err)
		}

		nodes := []*Node{
			{
				ID:         "doc-1",
				Labels:     []string{"Document"},
				Properties: map[string]interface{}{"source_uri": "s3://corpus/a.txt"},
			},
			{
				ID:         "doc-2",
				Labels:     []string{"Document"},
				Properties: map[string]interface{}{"source_uri": "s3://corpus/b.txt"},
			},
		}

		err = engine2.BulkCreateNodes(nodes)
		if err != nil {
			t.Fatalf("Bulk create should succeed: %v", err)
		}

		// Now try to create a node with a duplicate source_uri
		node := &Node{
			ID:         "doc-3",
			Labels:     []string{"Document"},
			Properties: map[string]interface{}{"source_uri": "s3://corpus/a.txt"},
		}

		err = engine2.CreateNode(node)
		if err == nil {
			t.Fatal("Expected constraint violation error when creating duplicate after bulk create")
		}

		if !strings.Contains(err.Error(), "constraint violation") {
			t.Errorf("Expected constraint violation error, got: %v", err)
		}
	})

	t.Run("bulk create with no constraints succeeds", func(t *testing.T) {
		engine3 := NewMemoryEngine()
		defer engine3.Close()

		// No constraints - bulk create should work with any data
		nodes := []*Node{
			{
				ID:         "chunk-1",
				Labels:     []string{"Chunk"},
				Properties: map[string]interface{}{"text": "shared content"},
			},
			{
				ID:         "chunk-2",
				Labels:     []string{"Chunk"},
				Properties: map[string]interface{}{"text": "shared content"}, // same value is OK
			},
		}

		err := engine3.BulkCreateNodes(nodes)
		if err != nil {
			t.Fatalf("Bulk create without constraints should succeed: %v", err)
		}
	})
}
