package cli

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/akaplins/paperkeep/internal/models"
)

// Attach links a local file to an existing document. The file is uploaded
// the next time the document syncs.
func (a *App) Attach(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Enter document id", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	path, err := GetSimpleText(a.reader, "Enter file path", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}

	att := &models.FileAttachment{
		OwnerSyncID: id,
		FileName:    filepath.Base(path),
		LocalPath:   path,
		FileSize:    info.Size(),
	}
	if err := a.store.AddAttachment(ctx, att); err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}

	log.Printf("Attached %s to %s", att.FileName, id)
	return nil
}
