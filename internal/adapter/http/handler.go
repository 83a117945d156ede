package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/tenantdocs/internal/app"
	"github.com/neomorfeo/tenantdocs/internal/domain"
)

const repositoryPath = "/api/v1/tenants/{tenant}/repositories/{repository}"

// RepositoryParams addresses one repository of one tenant.
type RepositoryParams struct {
	TenantID     int64 `path:"tenant" doc:"Tenant ID"`
	RepositoryID int64 `path:"repository" minimum:"1" doc:"Repository ID"`
}

// FileParams addresses one version of one file.
type FileParams struct {
	RepositoryParams
	Name    string `query:"name" required:"true" minLength:"1" doc:"File name, may contain slashes"`
	Version string `query:"version" required:"false" doc:"Version label, defaults to 1.0"`
}

// --- Directories ---

type DirectoryInput struct {
	RepositoryParams
	Dir string `query:"dir" required:"false" doc:"Directory below the repository root"`
}

type ListFilesOutput struct {
	Body []string
}

// --- Files ---

type WriteFileInput struct {
	FileParams
	RawBody []byte `contentType:"application/octet-stream"`
}

type ReadFileOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// FileInfo describes one file version.
type FileInfo struct {
	Path   string `json:"path" doc:"Namespace path"`
	Exists bool   `json:"exists" doc:"Whether the version exists"`
	Size   int64  `json:"size,omitempty" doc:"Size in bytes"`
}

type FileInfoOutput struct {
	Body FileInfo
}

type DirectoryInfoOutput struct {
	Body struct {
		Path   string `json:"path" doc:"Namespace path"`
		Exists bool   `json:"exists" doc:"Whether the directory exists"`
	}
}

type RenameFileInput struct {
	RepositoryParams
	Body struct {
		Name    string `json:"name" minLength:"1" doc:"Current file name"`
		NewName string `json:"new_name" minLength:"1" doc:"New file name"`
	}
}

type MoveFileInput struct {
	RepositoryParams
	Body struct {
		Name         string `json:"name" minLength:"1" doc:"File name"`
		RepositoryID int64  `json:"repository_id" minimum:"1" doc:"Target repository ID"`
	}
}

// Register adds the document API routes to the Huma API.
func Register(api huma.API, store *app.DocumentStore) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-directory",
		Method:        http.MethodPost,
		Path:          repositoryPath + "/directories",
		Summary:       "Create a directory",
		Tags:          []string{"Documents"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DirectoryInput) (*struct{}, error) {
		if err := store.AddDirectory(ctx, input.TenantID, input.RepositoryID, input.Dir); err != nil {
			return nil, toHumaError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-directory",
		Method:      http.MethodGet,
		Path:        repositoryPath + "/directories",
		Summary:     "Check whether a directory exists",
		Tags:        []string{"Documents"},
	}, func(ctx context.Context, input *DirectoryInput) (*DirectoryInfoOutput, error) {
		ok, err := store.HasDirectory(ctx, input.TenantID, input.RepositoryID, input.Dir)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &DirectoryInfoOutput{}
		out.Body.Path = domain.DirPath(input.TenantID, input.RepositoryID, input.Dir).String()
		out.Body.Exists = ok
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-directory",
		Method:        http.MethodDelete,
		Path:          repositoryPath + "/directories",
		Summary:       "Delete a directory recursively",
		Tags:          []string{"Documents"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DirectoryInput) (*struct{}, error) {
		if err := store.DeleteDirectory(ctx, input.TenantID, input.RepositoryID, input.Dir); err != nil {
			return nil, toHumaError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-files",
		Method:      http.MethodGet,
		Path:        repositoryPath + "/files",
		Summary:     "List the entries of a directory",
		Tags:        []string{"Documents"},
	}, func(ctx context.Context, input *DirectoryInput) (*ListFilesOutput, error) {
		names, err := store.GetFileNames(ctx, input.TenantID, input.RepositoryID, input.Dir)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ListFilesOutput{Body: names}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-file",
		Method:        http.MethodPost,
		Path:          repositoryPath + "/files/content",
		Summary:       "Store a file version",
		Tags:          []string{"Documents"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *WriteFileInput) (*struct{}, error) {
		if err := store.AddFile(ctx, input.TenantID, input.RepositoryID, input.Name, input.Version, bytes.NewReader(input.RawBody)); err != nil {
			return nil, toHumaError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "update-file",
		Method:        http.MethodPut,
		Path:          repositoryPath + "/files/content",
		Summary:       "Overwrite a file version",
		Tags:          []string{"Documents"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *WriteFileInput) (*struct{}, error) {
		if err := store.UpdateFile(ctx, input.TenantID, input.RepositoryID, input.Name, input.Version, bytes.NewReader(input.RawBody)); err != nil {
			return nil, toHumaError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-file",
		Method:      http.MethodGet,
		Path:        repositoryPath + "/files/content",
		Summary:     "Read a file version",
		Tags:        []string{"Documents"},
	}, func(ctx context.Context, input *FileParams) (*ReadFileOutput, error) {
		r, err := store.GetFileAsStream(ctx, input.TenantID, input.RepositoryID, input.Name, input.Version)
		if err != nil {
			return nil, toHumaError(err)
		}
		defer r.Close()

		b, err := io.ReadAll(r)
		if err != nil {
			return nil, toHumaError(&domain.RemoteIOError{
				Op:   "read",
				Path: domain.FilePath(input.TenantID, input.RepositoryID, input.Name, input.Version),
				Err:  err,
			})
		}
		return &ReadFileOutput{ContentType: "application/octet-stream", Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stat-file",
		Method:      http.MethodGet,
		Path:        repositoryPath + "/files/info",
		Summary:     "Report whether a file version exists and its size",
		Tags:        []string{"Documents"},
	}, func(ctx context.Context, input *FileParams) (*FileInfoOutput, error) {
		info := FileInfo{
			Path: domain.FilePath(input.TenantID, input.RepositoryID, input.Name, input.Version).String(),
		}
		ok, err := store.HasFile(ctx, input.TenantID, input.RepositoryID, input.Name, input.Version)
		if err != nil {
			return nil, toHumaError(err)
		}
		if ok {
			info.Exists = true
			info.Size, err = store.GetFileSize(ctx, input.TenantID, input.RepositoryID, input.Name, input.Version)
			if err != nil {
				return nil, toHumaError(err)
			}
		}
		return &FileInfoOutput{Body: info}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-file",
		Method:        http.MethodDelete,
		Path:          repositoryPath + "/files/content",
		Summary:       "Delete a file version",
		Tags:          []string{"Documents"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *FileParams) (*struct{}, error) {
		if err := store.DeleteFile(ctx, input.TenantID, input.RepositoryID, input.Name, input.Version); err != nil {
			return nil, toHumaError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "rename-file",
		Method:        http.MethodPost,
		Path:          repositoryPath + "/files/rename",
		Summary:       "Rename a file within its repository",
		Tags:          []string{"Documents"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *RenameFileInput) (*struct{}, error) {
		if err := store.UpdateFileName(ctx, input.TenantID, input.RepositoryID, input.Body.Name, input.Body.NewName); err != nil {
			return nil, toHumaError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "move-file",
		Method:        http.MethodPost,
		Path:          repositoryPath + "/files/move",
		Summary:       "Move a file into another repository",
		Tags:          []string{"Documents"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *MoveFileInput) (*struct{}, error) {
		if err := store.UpdateFileRepository(ctx, input.TenantID, input.RepositoryID, input.Body.RepositoryID, input.Body.Name); err != nil {
			return nil, toHumaError(err)
		}
		return &struct{}{}, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	var nfErr *domain.NotFoundError
	if errors.As(err, &nfErr) {
		return huma.Error404NotFound(nfErr.Error())
	}

	var nameErr *domain.InvalidNameError
	if errors.As(err, &nameErr) {
		return huma.Error400BadRequest(nameErr.Error())
	}

	var dupErr *domain.DuplicateTargetError
	if errors.As(err, &dupErr) {
		return huma.Error409Conflict(dupErr.Error())
	}

	var renameErr *domain.RenameIncompleteError
	if errors.As(err, &renameErr) {
		return huma.Error409Conflict(renameErr.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	if errors.Is(err, domain.ErrRemoteIO) {
		return huma.Error502BadGateway("remote filesystem error")
	}

	return huma.Error500InternalServerError("internal server error")
}
