// Package analysis derives views of a trajectory beyond its raw samples.
//
//   - [Phase]: two state components plotted against each other
//   - [Section]: a Poincaré section located by the event coordinator
//   - [Spectrum]: power spectrum of one uniformly sampled component
//
// # Periods
//
// Samples written by the normalizer sit on a uniform grid, so their
// spectrum gives the dominant period of a component:
//
//	period, err := analysis.DominantPeriod(samples, 0)
package analysis
