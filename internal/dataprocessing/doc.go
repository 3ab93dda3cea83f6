// Package dataprocessing turns a directory of pupil transport CSV files into
// one long-format dataset.
//
// A load runs in two passes. The schema pass reads the header of every
// discovered file and collects the union of LEEFTIJD_ age band columns,
// including columns of files that are rejected later. The second pass
// normalises each file independently against that shared band list:
//
//  1. tolerant parse (semicolon delimited, malformed lines skipped, empty
//     cells read as "0")
//  2. header names trimmed and upper-cased
//  3. a missing POSTCODE_LEERLING column filled with "0000"
//  4. any other missing mandatory column rejects the file
//  5. missing age bands filled with zero counts
//  6. every count parsed by ParseCount; "<5" is 4 and any other invalid token
//     rejects the file
//  7. rows melted to one record per (row, age band)
//
// Files are normalised concurrently and concatenated in discovery order:
//
//	loader := dataprocessing.NewLoader(logger, discovery, dataprocessing.LoaderConfig{Workers: 4}, nil)
//	ds, err := loader.Load(ctx, "data")
//
// A failing file never fails the load. Its reason is reported in
// Dataset.SkippedFiles and through the Observer.
package dataprocessing
