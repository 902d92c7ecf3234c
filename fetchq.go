// Package fetchq provides the coordination core of a concurrent
// scrape-and-download tool. Work items (pages to scrape, files to download)
// are admitted into per-domain queues, executed by bounded worker pools under
// global and per-domain concurrency ceilings, and their outcomes are counted
// for observers such as a terminal UI.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, redis/, goquery/).
package fetchq
