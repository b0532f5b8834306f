package config

// definitionSchema is the JSON schema every provops.yaml must satisfy before
// it is decoded into a Definition. Kept embedded so the binary validates
// configs without a data directory on disk.
const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "project", "secretStore", "database", "service"],
  "properties": {
    "version": {"type": "integer"},
    "project": {"type": "string", "minLength": 1},
    "region": {"type": "string"},
    "secretStore": {
      "type": "object",
      "required": ["type", "prefix"],
      "properties": {
        "type": {
          "type": "string",
          "enum": ["gcp.secretmanager", "aws.secretsmanager", "aws.ssm", "azure.keyvault"]
        },
        "prefix": {"type": "string", "minLength": 1},
        "principal": {"type": "string"},
        "role": {"type": "string"},
        "config": {"type": "object"}
      }
    },
    "database": {
      "type": "object",
      "required": ["instance", "name", "user"],
      "properties": {
        "instance": {"type": "string", "minLength": 1},
        "engine": {"type": "string", "enum": ["postgres", "mysql"]},
        "name": {"type": "string", "minLength": 1},
        "user": {"type": "string", "minLength": 1},
        "host": {"type": "string"},
        "port": {"type": "integer", "minimum": 1, "maximum": 65535},
        "adminDSN": {"type": "string"}
      }
    },
    "cache": {
      "type": "object",
      "properties": {
        "id": {"type": "string"}
      }
    },
    "bucket": {"type": "string"},
    "service": {
      "type": "object",
      "required": ["name", "image"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "image": {"type": "string", "minLength": 1},
        "serviceAccount": {"type": "string"},
        "port": {"type": "integer", "minimum": 1, "maximum": 65535},
        "url": {"type": "string"}
      }
    },
    "app": {
      "type": "object",
      "properties": {
        "timezone": {"type": "string"},
        "executionsMode": {"type": "string"}
      }
    },
    "variables": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "pattern": "^[A-Z][A-Z0-9_]*$"},
          "static": {"type": "string"},
          "prompt": {"type": "string"},
          "optional": {"type": "boolean"}
        }
      }
    },
    "protectedResources": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    }
  }
}`
