package model

// Package model defines domain data structures shared by the coordinator and its
// consumers: download requests, the progress event union, task states, and the
// error taxonomy used to classify failed downloads.
