// Package files locates the pupil transport CSV files and writes export
// artifacts.
//
// Discovery lists the *.csv files directly under a directory in name order and
// computes a murmur3 fingerprint of the listing, which keys the dataset cache:
//
//	discovery := files.NewDiscovery("").Exclude("postcode_coords.csv")
//	found, err := discovery.FindCSVFiles("data")
//	key := files.Fingerprint(found)
//
// Manager writes exports atomically below a base directory.
package files
