// Package storage - Serialization helpers for BadgerDB.
package storage

import (
	"encoding/json"
	"fmt"
)

// serializeNode converts a Node to JSON bytes for BadgerDB storage,
// transparently encrypting the result if the engine has an encryptor
// configured.
func (b *BadgerEngine) serializeNode(node *Node) ([]byte, error) {
	plaintext, err := json.Marshal(node)
	if err != nil {
		return nil, err
	}
	return b.encryptPayload(plaintext)
}

// deserializeNode converts (possibly encrypted) bytes back to a Node.
func (b *BadgerEngine) deserializeNode(data []byte) (*Node, error) {
	plaintext, err := b.decryptPayload(data)
	if err != nil {
		return nil, fmt.Errorf("decrypting node: %w", err)
	}
	var node Node
	if err := json.Unmarshal(plaintext, &node); err != nil {
		return nil, fmt.Errorf("unmarshaling node: %w", err)
	}
	return &node, nil
}

// serializeEdge converts an Edge to JSON bytes for BadgerDB storage,
// transparently encrypting the result if the engine has an encryptor
// configured.
func (b *BadgerEngine) serializeEdge(edge *Edge) ([]byte, error) {
	plaintext, err := json.Marshal(edge)
	if err != nil {
		return nil, err
	}
	return b.encryptPayload(plaintext)
}

// deserializeEdge converts (possibly encrypted) bytes back to an Edge.
func (b *BadgerEngine) deserializeEdge(data []byte) (*Edge, error) {
	plaintext, err := b.decryptPayload(data)
	if err != nil {
		return nil, fmt.Errorf("decrypting edge: %w", err)
	}
	var edge Edge
	if err := json.Unmarshal(plaintext, &edge); err != nil {
		return nil, fmt.Errorf("unmarshaling edge: %w", err)
	}
	return &edge, nil
}

// encryptPayload runs plaintext through the engine's encryptor, if one is
// configured and enabled; otherwise it returns plaintext unchanged, so an
// engine with no encryption configured stores plain JSON exactly as before.
func (b *BadgerEngine) encryptPayload(plaintext []byte) ([]byte, error) {
	if b.encryptor == nil || !b.encryptor.IsEnabled() {
		return plaintext, nil
	}
	ciphertext, err := b.encryptor.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypting payload: %w", err)
	}
	return []byte(ciphertext), nil
}

// decryptPayload reverses encryptPayload. With no encryptor, or a disabled
// one, data is returned unchanged. With an enabled encryptor every payload
// is decrypted, so plain JSON written before the encryptor was configured
// is rejected by Decrypt with encryption.ErrInvalidData.
func (b *BadgerEngine) decryptPayload(data []byte) ([]byte, error) {
	if b.encryptor == nil || !b.encryptor.IsEnabled() {
		return data, nil
	}
	return b.encryptor.Decrypt(string(data))
}
