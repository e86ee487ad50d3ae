// backend.go - Registrierung der verfuegbaren Compute-Backends
package backend

import (
	_ "github.com/7blacky7/textembed/ml/backend/cpu"
)
