package errors

import (
	"fmt"
	"log"
	"runtime/debug"
)

// Recover converts a panic raised while processing a document into a
// document error stored in *errp. It must be deferred directly:
//
//	defer pdferrors.Recover(&err, "fill form")
//
// pdfcpu and the text parser panic on some malformed inputs.
func Recover(errp *error, operation string) {
	r := recover()
	if r == nil {
		return
	}

	log.Printf("Recovered from panic during %s: %v\n%s", operation, r, debug.Stack())

	var cause error
	if e, ok := r.(error); ok {
		cause = fmt.Errorf("%s: malformed document: %w", operation, e)
	} else {
		cause = fmt.Errorf("%s: malformed document: %v", operation, r)
	}
	*errp = WrapError(ErrorTypeDocument, cause)
}
