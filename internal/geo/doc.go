// Package geo aggregates long-format records and joins them to postcode
// coordinates for map views.
//
// The join key is the four character postcode prefix (PC4). A prefix absent
// from the coordinate table is a JoinMiss: its group stays in the tabular
// aggregate but produces no marker.
package geo
