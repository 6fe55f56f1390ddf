/*
Package domain contains the core domain models for the epac workflow engine.

It defines the vocabulary shared by every other package: the DataFlow mapping
that travels top-down through a workflow tree, the Array contract for
row-addressable values, node Signatures and Keys, and the Result/ResultSet
types assembled during the bottom-up reduction pass. This package is kept pure
and free of external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - DataFlow: named mapping of array-like values flowing top-down.
  - Array: minimal contract for values that can be re-sliced row-wise.
  - Key: full root-to-node path of signatures, unique per node.
  - Result: metric-name to value mapping tagged by the producing node.
  - ResultSet: key-indexed, order-preserving collection of Results.
*/
package domain
