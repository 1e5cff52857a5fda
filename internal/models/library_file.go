package models

import (
	"encoding/json"
	"fmt"
)

// LibraryVersion is the persisted library format version this build reads
// and writes.
const LibraryVersion = 1

// LibraryFile is the versioned on-disk exercise library document:
//
//	{"version": 1, "exercises": [{"name": ..., "difficulty": ..., "equipment": [...]}]}
type LibraryFile struct {
	Version   int        `json:"version"`
	Exercises []Exercise `json:"exercises"`
}

// ParseLibraryFile decodes and validates a library document. Decode
// failures, unknown versions, and invalid records all wrap
// ErrInvalidExerciseData; nothing is accepted from a document that fails
// anywhere.
func ParseLibraryFile(data []byte) ([]Exercise, error) {
	var file LibraryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: decoding library document: %v", ErrInvalidExerciseData, err)
	}
	if file.Version != LibraryVersion {
		return nil, fmt.Errorf("%w: unsupported library version %d (want %d)",
			ErrInvalidExerciseData, file.Version, LibraryVersion)
	}
	if err := ValidateLibrary(file.Exercises); err != nil {
		return nil, err
	}
	return file.Exercises, nil
}

// EncodeLibraryFile renders a library as a version-1 document with
// name-sorted exercises. Round-trips losslessly through ParseLibraryFile.
func EncodeLibraryFile(exercises []Exercise) ([]byte, error) {
	sorted := make([]Exercise, len(exercises))
	copy(sorted, exercises)
	SortExercisesByName(sorted)
	for i := range sorted {
		if sorted[i].Equipment == nil {
			sorted[i].Equipment = []string{}
		}
	}
	data, err := json.MarshalIndent(LibraryFile{Version: LibraryVersion, Exercises: sorted}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding library document: %w", err)
	}
	return data, nil
}
