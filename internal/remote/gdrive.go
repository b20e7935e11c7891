package remote

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
)

const folderMimeType = "application/vnd.google-apps.folder"

// GDrive stores archives in one Google Drive folder.
type GDrive struct {
	svc      *drive.Service
	folder   string
	folderID string
}

func NewGDrive(svc *drive.Service, folder string) *GDrive {
	return &GDrive{svc: svc, folder: folder}
}

func (g *GDrive) Name() string {
	return "gdrive:" + g.folder
}

// ensureFolder looks the folder up by name and creates it when missing.
func (g *GDrive) ensureFolder(ctx context.Context) (string, error) {
	if g.folderID != "" {
		return g.folderID, nil
	}

	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(g.folder), folderMimeType)
	list, err := g.svc.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gdrive: find folder %q: %w", g.folder, err)
	}
	if len(list.Files) > 0 {
		g.folderID = list.Files[0].Id
		return g.folderID, nil
	}

	created, err := g.svc.Files.Create(&drive.File{Name: g.folder, MimeType: folderMimeType}).
		Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gdrive: create folder %q: %w", g.folder, err)
	}
	g.folderID = created.Id
	return g.folderID, nil
}

func (g *GDrive) Upload(ctx context.Context, localPath, name string) error {
	folderID, err := g.ensureFolder(ctx)
	if err != nil {
		return err
	}
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = g.svc.Files.Create(&drive.File{Name: name, Parents: []string{folderID}}).
		Media(f).Fields("id").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gdrive: upload %s: %w", name, err)
	}
	return nil
}

func (g *GDrive) List(ctx context.Context) ([]Object, error) {
	folderID, err := g.ensureFolder(ctx)
	if err != nil {
		return nil, err
	}

	var out []Object
	q := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))
	err = g.svc.Files.List().Q(q).Fields("nextPageToken, files(id, name, size, modifiedTime)").
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
				out = append(out, Object{ID: f.Id, Name: f.Name, Size: f.Size, Modified: modified})
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *GDrive) Delete(ctx context.Context, obj Object) error {
	return g.svc.Files.Delete(obj.ID).Context(ctx).Do()
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
