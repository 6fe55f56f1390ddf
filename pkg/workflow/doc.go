/*
Package workflow implements the key-addressed workflow tree and its two-pass
execution protocol.

A tree is built once from leaf estimator wrappers and composition nodes
(Pipe), fanned out by splitters (CV, Perms, Methods, Grid) whose slicer
children re-slice the flowing arrays row-wise. A top-down pass (Fit,
Transform, Predict or FitPredict) propagates a DataFlow from the root to the
leaves; a bottom-up pass (Reduce) folds the per-leaf Results through each
level's Reducer into one aggregated ResultSet.

Every node is addressed by a Key: the root-to-node path of signatures. Fold
and permutation children are virtual, computable from the static tree, the
input flow and an index, so an external scheduler can dispatch any indexed
subtree to an independent worker and recombine the partial results through a
shared Store.
*/
package workflow
