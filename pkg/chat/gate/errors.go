package gate

import "errors"

var errNoDocumentIds = errors.New("upload produced no document ids")
