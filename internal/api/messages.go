package api

// User facing messages. Errors are reported in-band with HTTP 200 except for
// oversized uploads and rate limiting.
const (
	MsgNoFilesUploaded = "No se subieron archivos"
	MsgNoFilesSelected = "No se seleccionaron archivos"
	MsgInvalidType     = "Tipo de archivo no permitido"
	MsgFileTooLarge    = "El archivo es demasiado grande"
	MsgNoIngredients   = "No se detectaron ingredientes en la imagen. Prueba con otra foto o añade ingredientes manualmente."
	MsgAnalysisFailed  = "Error al analizar la imagen. Por favor, intenta de nuevo."
	MsgUnexpected      = "Error inesperado. Por favor, intenta de nuevo."
)
