package domain

// Reserved names and separators used across flows, keys and stores.
const (
	// KeySep joins node signatures into a Key.
	KeySep = "/"

	// TrainSuffix and TestSuffix mark the role of entries inside a merged
	// train/test DataFlow and of role-qualified metrics inside a Result.
	TrainSuffix = "/train"
	TestSuffix  = "/test"

	// KWSplitTrainTest is the reserved DataFlow entry marking a merged
	// train/test flow. Leaf wrappers seeing it split the flow, fit on the
	// train role and apply on both roles.
	KWSplitTrainTest = "__split_train_test__"

	// WildcardArgs replaces discriminating signature arguments in the
	// secondary signature of grid branches and fold slicers, so that their
	// Results collide and get folded by the level's Reducer.
	WildcardArgs = "*"

	// TreePrefix is the store key under which a whole workflow tree
	// definition is persisted.
	TreePrefix = "__tree__"

	// StoreSuffix is the trailing key segment under which a node's own
	// store contents are persisted, next to the tree definition.
	StoreSuffix = "__store__"

	// InputPrefix is the store key under which the input DataFlow of a
	// distributed run is persisted.
	InputPrefix = "__input__"
)

// Sample-set roles selected by slicers during the top-down passes.
const (
	RoleTrain = "train"
	RoleTest  = "test"
)

// ResultKeyField is the reserved Result entry holding the producing key.
const ResultKeyField = "key"

// RoleSuffix returns the reserved flow-name suffix for a role.
func RoleSuffix(role string) string {
	if role == RoleTrain {
		return TrainSuffix
	}
	return TestSuffix
}
