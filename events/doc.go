// Package events carries the conversation traffic of a run: every prompt,
// chunk, tool call, response, result and error becomes an Event that can be
// published to subscribers. Events add sender tracking on top of the
// provider package's stream events, and each hook method corresponds to one
// event shape so subscribers handle every case explicitly.
package events
