package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// Pipeline error taxonomy. NoCandidates and CollectionTimeout terminate a
// task; InvalidTransition is surfaced to the caller with the task untouched.
var (
	ErrorNoCandidates      = errors.New("no supplier candidates available")
	ErrorCollectionTimeout = errors.New("quote collection window elapsed")
	ErrorDecisionFailed    = errors.New("decision failed: no candidates to score")
	ErrorInvalidTransition = errors.New("invalid task status transition")
	ErrorDuplicateQuote    = errors.New("quote already recorded for this supplier")
	ErrorTaskAlreadyOpen   = errors.New("an open procurement task already exists for this medicine")
)

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
