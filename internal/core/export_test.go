package core

// SetPickIndex overrides the draw's index selection in tests.
func SetPickIndex(l *RaffleLedger, pick func(n int) int) {
	l.pickIndex = pick
}
