package i18nk

type Key string

const (
	UploadStarting   Key = "upload_starting"
	UploadComplete   Key = "upload_complete"
	UploadFailed     Key = "upload_failed"
	UploadCancelHint Key = "upload_cancel_hint"
	UploadSent       Key = "upload_sent"
	WaitingServer    Key = "waiting_server"
	ServerStarting   Key = "server_starting"
	ServerStopped    Key = "server_stopped"
	PredictResult    Key = "predict_result"
)
