// Package worker implements the offline cache controller.
//
// A Controller owns two versioned cache partitions: the shell partition,
// filled at install with every resource the application needs to boot
// offline, and the runtime partition, filled lazily while serving. Each fetch
// is classified by an ordered rule list into one of four strategies:
//
//	navigation  network first, cached under the root document key;
//	            fallback root document, then offline document
//	asset       cache first, write-through on miss
//	media       network first without writing; fallback exact cached copy,
//	            then placeholder image
//	other       cache first, write-through on miss; fallback offline document
//
// Network failures never escape a fetch while a fallback exists. When every
// layer is exhausted Fetch returns ErrNoResponse.
//
// A Registration plays the host scope: it installs new controller versions,
// keeps the previous version serving when install fails, and swaps the
// active controller atomically on activation.
package worker
