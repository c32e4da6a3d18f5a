package physics

const (
	// CollisionAxisTolerance keeps cell enumeration from picking up a
	// neighbour the shape only touches at its face.
	CollisionAxisTolerance = 1e-9

	DefaultCapsuleRadius = 0.2
	DefaultCapsuleHeight = 1.0

	// Iteration budgets for the nested golden-section searches.
	segmentSearchSteps = 48
	motionSearchSteps  = 64
	rootSearchSteps    = 56

	// Motions shorter than this are treated as no motion at all.
	MinimumCastLength = 1e-9

	// maxGridCells caps how many voxel cells one query may expand into.
	maxGridCells = 1 << 14
)
