/*
Package store provides the built-in ports.Store implementations.

  - MemStore: in-memory store, used for scratch state and single-process
    runs.
  - FSStore: filesystem store persisting JSON entries under a base
    directory, with large arrays segregated into a gob-encoded blob region.

A redis-backed store lives in the redisstore subpackage.

All backends share the same merge-on-save discipline: merging is monotonic
and a differing value under an identical sub-key is a fatal
domain.ErrMergeConflict.
*/
package store
