package database

var MigrationFiles = migrationFiles
