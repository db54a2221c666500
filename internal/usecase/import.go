package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dialogue/internal/adapter/fs"
	"dialogue/internal/domain"
)

// ImportUseCase bulk-loads exported conversations from JSON files. Each file
// holds one SaveRequest object or an array of them.
type ImportUseCase struct {
	save   *SaveUseCase
	walker *fs.Walker
}

func NewImportUseCase(save *SaveUseCase, walker *fs.Walker) *ImportUseCase {
	return &ImportUseCase{save: save, walker: walker}
}

// ImportResult contains the results of an import run.
type ImportResult struct {
	Files      int
	Saved      int
	Duplicates int
	Errors     []string
}

// ImportProgressFunc is called after each file.
type ImportProgressFunc func(done, total int, currentFile string)

// Import saves every request found in files matching patterns. Bad files and
// rejected requests are collected in Errors; duplicates of an already stored
// conversation_id are counted and skipped so re-running an import is safe.
// Encoding and storage failures abort the run.
func (u *ImportUseCase) Import(ctx context.Context, root string, patterns []string, progress ImportProgressFunc) (*ImportResult, error) {
	files, err := u.walker.Glob(root, patterns)
	if err != nil {
		return nil, fmt.Errorf("failed to expand patterns: %w", err)
	}

	result := &ImportResult{Files: len(files)}
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		reqs, err := readRequests(file.Path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file.Path, err))
		}

		for j, req := range reqs {
			_, err := u.save.Save(ctx, req)
			switch {
			case err == nil:
				result.Saved++
			case errors.Is(err, domain.ErrDuplicate):
				result.Duplicates++
			case errors.Is(err, domain.ErrInvalid):
				result.Errors = append(result.Errors, fmt.Sprintf("%s[%d]: %v", file.Path, j, err))
			default:
				return result, fmt.Errorf("%s[%d]: %w", file.Path, j, err)
			}
		}

		if progress != nil {
			progress(i+1, len(files), file.Path)
		}
	}

	return result, nil
}

func readRequests(path string) ([]domain.SaveRequest, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var reqs []domain.SaveRequest
		if err := json.Unmarshal(data, &reqs); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return reqs, nil
	}

	var req domain.SaveRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return []domain.SaveRequest{req}, nil
}
