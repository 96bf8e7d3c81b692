// Package storage manages the subject folders images are saved into.
//
// Each subject gets one folder under the downloads root, named by
// SubjectName so query variations of the same person share it. Inside a
// folder, files are named by zero-padded ordinal (000001.jpg, 000002.png).
//
// Features:
//   - Temporary file plus hard link, so a save is all-or-nothing and never clobbers
//   - Ordinals resume after the highest existing one and never go backwards
//   - Remove rolls back a save whose image turned out to be a duplicate
//
// Usage:
//
//	m, err := storage.NewManager(filepath.Join(root, storage.SubjectName(query)))
//	if err != nil {
//	    return err
//	}
//	path, err := m.Save(img.Data, img.Ext)
package storage
