package sqlite

// Manifest DDL.
const (
	createRuns = `CREATE TABLE runs (
    run_id TEXT PRIMARY KEY,
    seed INTEGER NOT NULL,
    val_fraction REAL NOT NULL,
    data_dir TEXT NOT NULL,
    created_at TEXT NOT NULL
);`

	createImages = `CREATE TABLE images (
    split TEXT NOT NULL,
    idx INTEGER NOT NULL,
    class_id TEXT NOT NULL,
    image_name TEXT NOT NULL,
    image_id TEXT NOT NULL,
    source TEXT NOT NULL,
    bytes INTEGER NOT NULL,
    PRIMARY KEY (split, idx)
);`

	idxImagesClass = `CREATE INDEX idx_images_class ON images(class_id, split);`
)

// manifestDDL lists the statements that create an empty manifest.
var manifestDDL = []string{
	createRuns,
	createImages,
	idxImagesClass,
}
