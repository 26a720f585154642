package economy

// XPForNextLevel returns the experience needed to advance from level to level+1.
func XPForNextLevel(level int64) int64 {
	return 5*level*level + 50*level + 100
}

// TotalXPForLevel returns the total experience needed to reach level.
func TotalXPForLevel(level int64) int64 {
	var total int64
	for l := int64(0); l < level; l++ {
		total += XPForNextLevel(l)
	}
	return total
}

// LevelForXP returns the level reached with the given total experience.
func LevelForXP(xp int64) int64 {
	var level int64
	for xp >= XPForNextLevel(level) {
		xp -= XPForNextLevel(level)
		level++
	}
	return level
}
