/*
Package estimators provides small deterministic estimators implementing the
capability ports: a column-centering scaler, a shrunken nearest-centroid
classifier and a majority-class baseline. They are registered as estimator
factories so persisted trees using them rehydrate in any process, and they
back the CLI and the package tests. Serious modelling is expected to come
from user-provided estimators.
*/
package estimators
