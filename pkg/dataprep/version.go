package dataprep

// Version is the dataprep release version.
const Version = "0.1.0"
