package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/docfield/docfield/internal/api"
	"github.com/docfield/docfield/internal/filecenter"
	"github.com/docfield/docfield/internal/svcctx"
)

// FileInfoEndpoint handles GET /v1/files/{fileId}. It proxies a metadata
// lookup to the file center so operators can check whether a document or
// OCR artifact referenced by a task actually exists.
type FileInfoEndpoint struct{}

func (e *FileInfoEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/files/{fileId}", e.handler
}

func (e *FileInfoEndpoint) RequiresInit() bool { return true }

func (e *FileInfoEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("fileId")
	fc := svcctx.FileCenterFrom(r.Context())

	infos, err := fc.GetFilesInfo(r.Context(), []string{fileID})
	if err != nil {
		writeJSON(w, http.StatusBadGateway, api.ErrorResponse{Error: err.Error()})
		return
	}
	if len(infos) == 0 {
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: filecenter.ErrNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, infos[0])
}

func (e *FileInfoEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "file <fileId>",
		Short: "Show file center metadata for a file id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp filecenter.FileInfo
			if err := client.Get(cmd.Context(), "/v1/files/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
