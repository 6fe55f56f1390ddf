/*
Package epac is a tree-structured experiment workflow engine. It runs many
related variants of a data-processing pipeline (cross-validation folds,
random permutations, alternative methods, grid-search branches) and folds
their outputs into summary statistics such as means and empirical p-values.

A workflow is one declarative tree of nodes: estimator wrappers at the
leaves, splitters and slicers above them. Executing the tree is two passes:
a top-down pass propagates a DataFlow of named arrays from the root to the
leaves, and a bottom-up pass reduces the per-leaf Results through each
level's reducer into one aggregated ResultSet.

	methods, _ := workflow.NewMethods(
		workflow.NewEstimator(estimators.NewNearestCentroid(0)),
		workflow.NewEstimator(estimators.NewMajority()),
	)
	eng := epac.New(workflow.NewCV(methods, 5))
	eng.FitPredict(ctx, epac.DataFlow{"X": x, "y": y})
	results, _ := eng.Reduce(ctx)

Every node is addressed by a key, and splitter children are virtual:
computable from the tree definition, the input flow and an index. The
scheduler package builds on this to farm indexed subtrees out to independent
workers and recombine their partial results through a shared store.
*/
package epac
