// Package indexer walks a workspace and feeds every Go file's symbols into
// the project index, so that open documents can resolve names declared in
// files the editor never opened.
//
// # Pipeline
//
//  1. Discovery: find .go files, skipping vendor and hidden directories
//  2. Incremental decision: hash the content and skip files whose stored
//     hash is unchanged
//  3. Parse and build symbols, concurrently across a bounded worker pool
//  4. Merge: all fragments are written through Submitter, which runs the
//     writes on the engine's analysis goroutine
//
// Files that are open in the editor are skipped; their fragments come from
// the analysis pipeline instead.
//
// # Usage
//
//	idx := indexer.New(parser.New(), symbols.New(), projectIndex, scheduler)
//	stats, err := idx.IndexProject(ctx, "/path/to/project", nil)
//	if errors.Is(err, indexer.ErrIndexingInProgress) {
//	    // another pass is running
//	}
package indexer
