package bpetrain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/corpusforge/bpetrain/internal/bpe"
)

const stateVersion = 1

// persistedState is the on-disk JSON shape. Vocab is keyed by the
// decimal token id and valued by its lowercase-hex byte encoding so the
// file stays valid JSON and diff-friendly for arbitrary byte content.
type persistedState struct {
	Version int               `json:"version"`
	Merges  [][2]bpe.TokenID  `json:"merges"`
	Vocab   map[string]string `json:"vocab"`
}

// SaveState writes the trainer's current Vocab and Merges to
// <folder>/<sanitized_prefix>_tokenizer.json, sanitizing prefix to its
// final path component, and returns the path written. The write is
// atomic: content goes to a temp file in folder first, then is renamed
// into place, so a crash mid-write never leaves a truncated file where
// the final name would be.
func (t *Trainer) SaveState(prefix, folder string) (string, error) {
	info, err := os.Stat(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return "", newIOError("SaveState", folder, ErrStateNotFound)
		}
		return "", newIOError("SaveState", folder, err)
	}
	if !info.IsDir() {
		return "", newIOError("SaveState", folder, ErrNotADirectory)
	}

	sanitized := filepath.Base(prefix)
	finalPath := filepath.Join(folder, sanitized+"_tokenizer.json")

	state := persistedState{
		Version: stateVersion,
		Merges:  make([][2]bpe.TokenID, len(t.merges)),
		Vocab:   make(map[string]string, len(t.vocab)),
	}
	for i, p := range t.merges {
		state.Merges[i] = [2]bpe.TokenID{p[0], p[1]}
	}
	for id, bytes := range t.vocab {
		state.Vocab[strconv.Itoa(int(id))] = hex.EncodeToString(bytes)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", newIOError("SaveState", finalPath, err)
	}

	tmp, err := os.CreateTemp(folder, "."+sanitized+"_tokenizer.json.tmp-*")
	if err != nil {
		return "", newIOError("SaveState", finalPath, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", newIOError("SaveState", finalPath, err)
	}
	if err := tmp.Close(); err != nil {
		return "", newIOError("SaveState", finalPath, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", newIOError("SaveState", finalPath, err)
	}

	return finalPath, nil
}

// LoadState reads <folder>/<sanitized_prefix>_tokenizer.json and
// replaces the trainer's Vocab and Merges with its contents.
func (t *Trainer) LoadState(prefix, folder string) error {
	info, err := os.Stat(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return newIOError("LoadState", folder, ErrStateNotFound)
		}
		return newIOError("LoadState", folder, err)
	}
	if !info.IsDir() {
		return newIOError("LoadState", folder, ErrNotADirectory)
	}

	sanitized := filepath.Base(prefix)
	path := filepath.Join(folder, sanitized+"_tokenizer.json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newIOError("LoadState", path, ErrStateNotFound)
		}
		return newIOError("LoadState", path, err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return newValueError("LoadState", fmt.Errorf("%w: %v", ErrInvalidState, err))
	}
	if state.Version != stateVersion {
		return newValueError("LoadState", fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, state.Version, stateVersion))
	}

	vocab := make(Vocab, len(state.Vocab))
	for key, hexBytes := range state.Vocab {
		id, err := strconv.Atoi(key)
		if err != nil {
			return newValueError("LoadState", fmt.Errorf("%w: vocab id %q is not an integer", ErrInvalidState, key))
		}
		bytes, err := hex.DecodeString(hexBytes)
		if err != nil {
			return newValueError("LoadState", fmt.Errorf("%w: vocab id %d: %v", ErrInvalidState, id, err))
		}
		vocab[bpe.TokenID(id)] = bytes
	}

	merges := make(Merges, len(state.Merges))
	for i, pair := range state.Merges {
		merges[i] = bpe.Pair{pair[0], pair[1]}
	}

	t.vocab = vocab
	t.merges = merges
	return nil
}
