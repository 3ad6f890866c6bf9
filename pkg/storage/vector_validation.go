// Package storage - vector index validation, checked on node writes and
// when a vector index is declared over already-populated data.
package storage

import "fmt"

// VectorIndexViolationError is returned when a node's embedding does not
// match the shape declared by a VectorIndex.
type VectorIndexViolationError struct {
	IndexName string
	Label     string
	NodeID    NodeID
	Message   string
}

func (e *VectorIndexViolationError) Error() string {
	return fmt.Sprintf("vector index violation (%s on %s, node %s): %s",
		e.IndexName, e.Label, e.NodeID, e.Message)
}

// ValidateEmbeddingAgainstIndexes checks a node's embedding against every
// vector index declared for any of its labels. A node with no embedding is
// not checked: not every node under a vector-indexed label is required to
// carry one (e.g. a Document node before its embedding has been computed).
func (b *BadgerEngine) ValidateEmbeddingAgainstIndexes(node *Node) error {
	return validateEmbeddingAgainstSchema(b.schema, node)
}

// ValidateEmbeddingAgainstIndexes is MemoryEngine's counterpart, checked
// by the same rules as BadgerEngine so both implementations of Engine
// enforce declared vector indexes identically.
func (m *MemoryEngine) ValidateEmbeddingAgainstIndexes(node *Node) error {
	return validateEmbeddingAgainstSchema(m.schema, node)
}

func validateEmbeddingAgainstSchema(schema *SchemaManager, node *Node) error {
	if len(node.Embedding) == 0 {
		return nil
	}

	for _, label := range node.Labels {
		for _, vi := range schema.GetVectorIndexesForLabel(label) {
			if err := validateEmbeddingShape(node.ID, vi, node.Embedding); err != nil {
				return err
			}
		}
	}

	return nil
}

// validateEmbeddingShape checks a single embedding against a single
// declared index: dimensionality must match exactly, and the similarity
// function must be one pkg/math/vector actually implements.
func validateEmbeddingShape(id NodeID, vi *VectorIndex, embedding []float32) error {
	if vi.Dimensions > 0 && len(embedding) != vi.Dimensions {
		return &VectorIndexViolationError{
			IndexName: vi.Name,
			Label:     vi.Label,
			NodeID:    id,
			Message: fmt.Sprintf("embedding has %d dimensions, index %q requires %d",
				len(embedding), vi.Name, vi.Dimensions),
		}
	}

	switch vi.SimilarityFunc {
	case "", "cosine", "euclidean", "dot":
		// Recognized similarity functions (empty defaults to cosine downstream).
	default:
		return &VectorIndexViolationError{
			IndexName: vi.Name,
			Label:     vi.Label,
			NodeID:    id,
			Message:   fmt.Sprintf("index %q declares unknown similarity function %q", vi.Name, vi.SimilarityFunc),
		}
	}

	return nil
}

// ValidateVectorIndexOnCreation scans all existing nodes under a label and
// checks their embeddings against a newly declared vector index. Mirrors
// the retroactive check a unique/existence constraint gets when it is
// added to a label that already has data, but for embedding shape instead
// of property values.
func (b *BadgerEngine) ValidateVectorIndexOnCreation(vi VectorIndex) error {
	nodes, err := b.GetNodesByLabel(vi.Label)
	if err != nil {
		return fmt.Errorf("scanning nodes: %w", err)
	}

	for _, node := range nodes {
		if len(node.Embedding) == 0 {
			continue
		}
		if err := validateEmbeddingShape(node.ID, &vi, node.Embedding); err != nil {
			return err
		}
	}

	return nil
}

// AddVectorIndex declares a vector index on the engine's schema and
// validates it against whatever nodes already exist under that label,
// refusing to register an index that existing embeddings already violate.
func (b *BadgerEngine) AddVectorIndex(name, label, property string, dimensions int, similarityFunc string) error {
	if err := b.ValidateVectorIndexOnCreation(VectorIndex{
		Name:           name,
		Label:          label,
		Property:       property,
		Dimensions:     dimensions,
		SimilarityFunc: similarityFunc,
	}); err != nil {
		return err
	}

	return b.schema.AddVectorIndex(name, label, property, dimensions, similarityFunc)
}

// ValidateVectorIndexOnCreation is MemoryEngine's counterpart of the
// BadgerEngine retroactive check.
func (m *MemoryEngine) ValidateVectorIndexOnCreation(vi VectorIndex) error {
	nodes, err := m.GetNodesByLabel(vi.Label)
	if err != nil {
		return fmt.Errorf("scanning nodes: %w", err)
	}

	for _, node := range nodes {
		if len(node.Embedding) == 0 {
			continue
		}
		if err := validateEmbeddingShape(node.ID, &vi, node.Embedding); err != nil {
			return err
		}
	}

	return nil
}

// AddVectorIndex is MemoryEngine's counterpart of BadgerEngine.AddVectorIndex.
func (m *MemoryEngine) AddVectorIndex(name, label, property string, dimensions int, similarityFunc string) error {
	if err := m.ValidateVectorIndexOnCreation(VectorIndex{
		Name:           name,
		Label:          label,
		Property:       property,
		Dimensions:     dimensions,
		SimilarityFunc: similarityFunc,
	}); err != nil {
		return err
	}

	return m.schema.AddVectorIndex(name, label, property, dimensions, similarityFunc)
}
