// Copyright 2026 The Crateforge Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/crateforge/crateforge/lib/catalog"
	"github.com/crateforge/crateforge/lib/normalize"
)

// item is one package flowing through fetch and assembly. data holds
// the raw archive bytes; tree is populated only when the layout needs
// normalized extraction.
type item struct {
	binary    *catalog.BinaryPackage
	entryType EntryType
	recipe    string

	data []byte
	tree *normalize.Tree
}

func (it *item) ref() string {
	return fmt.Sprintf("%s/%s (package_id %s)",
		it.binary.PackageName, it.binary.Version, it.binary.PackageID)
}

// fetchItems retrieves every item's archive from the blob store, and
// when extract is set, normalizes each into its own directory under
// tempRoot. Items are processed concurrently on a bounded pool; the
// first failure cancels the rest and aborts the whole bundle.
func (s *Service) fetchItems(ctx context.Context, items []*item, extract bool, tempRoot string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, s.workers)
		errOnce   sync.Once
		firstErr  error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for index, it := range items {
		wg.Add(1)
		go func(index int, it *item) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				return
			}

			if err := s.fetchOne(ctx, it, extract, tempRoot, index); err != nil {
				fail(err)
			}
		}(index, it)
	}
	wg.Wait()

	return firstErr
}

func (s *Service) fetchOne(ctx context.Context, it *item, extract bool, tempRoot string, index int) error {
	data, err := s.blobs.Fetch(ctx, it.binary.BlobKey)
	if err != nil {
		return &Error{
			Condition: ConditionArtifactFetchFailure,
			Message:   fmt.Sprintf("failed to fetch artifact for %s", it.ref()),
			Err:       err,
		}
	}
	it.data = data

	if !extract {
		return nil
	}

	destDir := filepath.Join(tempRoot, fmt.Sprintf("pkg-%d", index))
	tree, err := normalize.Extract(bytes.NewReader(data), destDir)
	if err != nil {
		return &Error{
			Condition: ConditionArchiveCorrupt,
			Message:   fmt.Sprintf("archive for %s is corrupt", it.ref()),
			Err:       err,
		}
	}
	it.tree = tree
	return nil
}
