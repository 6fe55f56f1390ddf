/*
Package ports defines the driven ports (interfaces) for the epac engine.

These interfaces decouple the workflow tree from external implementations,
allowing the engine to work with various storage backends and user-supplied
estimators.

# Key Interfaces

  - Store: key-value persistence with merge-on-save semantics, prefix
    aggregation and transparent large-blob segregation.
  - Fitter / Transformer / Predictor / Scorer: the estimator capability
    contract; a leaf object implements whichever subset applies.
*/
package ports
