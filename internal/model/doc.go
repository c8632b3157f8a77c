package model

// Package model defines domain data structures shared across the app: pipeline
// items, video metadata, stage enums, and the typed progress contract pushed
// through callbacks to CLI or web frontends.
