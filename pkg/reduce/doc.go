/*
Package reduce defines the Reducer port applied during the bottom-up pass and
the built-in reducers: SummaryStat folds metric values across folds or
branches into mean and standard deviation; PvalPermutations turns a
permutation axis into empirical p-values against the unpermuted reference.
*/
package reduce
